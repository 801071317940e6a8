package tracking

import (
	"encoding/json"
	"fmt"
)

// DisplayNameFilter returns the list filter selecting exactly the resources
// whose display name equals name. The name is JSON-escaped so quotes and
// backslashes survive the filter grammar.
func DisplayNameFilter(name string) string {
	quoted, err := json.Marshal(name)
	if err != nil {
		// json.Marshal cannot fail for a string value.
		panic(err)
	}
	return fmt.Sprintf("display_name = %s", quoted)
}
