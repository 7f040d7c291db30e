// Package validation provides a Laravel-style rule-string validator for flat
// string maps. It guards configuration values and action token keys.
//
//	v := validation.Make(map[string]string{
//	    "BRIDGE_TRANSPORT": cfg.Bridge.Transport,
//	    "BRIDGE_ENDPOINT":  cfg.Bridge.Endpoint,
//	}, validation.Rules{
//	    "BRIDGE_TRANSPORT": "required|in:http,grpc",
//	    "BRIDGE_ENDPOINT":  "required|starts_with:/",
//	})
//
//	if v.Fails() {
//	    return v.Errors() // *Errors implements error
//	}
//
// # Available Rules
//
//	required          field must be non-empty
//	nullable          empty values skip the remaining rules
//	integer           must parse as int
//	url               http(s) URL with a host
//	min:N / max:N     string length (runes)
//	gte:N             numeric value >= N
//	in:a,b,c          value must be one of the list
//	starts_with:X     value must start with X
//	regex:pattern     must match the Go regex; must be the field's last rule
//
// Rules are evaluated left to right and stop at the first failure per field.
package validation
