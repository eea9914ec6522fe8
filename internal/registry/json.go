package registry

import "encoding/json"

func unmarshalStrings(data []byte, dst *[]string) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
