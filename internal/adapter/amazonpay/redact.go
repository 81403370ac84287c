package amazonpay

import (
	"encoding/json"
	"strings"
)

const redacted = "REMOVED"

// piiKeys are response and request fields that carry buyer data.
var piiKeys = map[string]bool{
	"buyer":                   true,
	"shippingaddress":         true,
	"billingaddress":          true,
	"sellernote":              true,
	"sellerauthorizationnote": true,
	"sellercapturenote":       true,
	"sellerrefundnote":        true,
	"softdescriptor":          true,
}

// redactBody returns body with buyer data replaced, for logging. Non-JSON
// bodies are returned as-is.
func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return ""
	}
	return string(out)
}

func redactValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			if piiKeys[strings.ToLower(k)] {
				t[k] = redacted
				continue
			}
			t[k] = redactValue(inner)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = redactValue(t[i])
		}
		return t
	}
	return v
}
