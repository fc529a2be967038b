package policy

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// CredentialElevationRule checks network_request/shell_exec actions (the
// kinds capable of reaching outside the sandbox) whose args carry a
// "credential" bearer token: it denies when the token does not verify
// against keySet, has no scope claim, or lacks requiredScope. Actions of
// other kinds, and actions without a credential, are allowed. Grounded on
// pkg/auth/jwt.go's JWKS validator, generalized from an HTTP middleware
// into a policy rule so credential checks go through the same
// allow/warn/deny machinery as every other action.
func CredentialElevationRule(id string, keySet jwk.Set, requiredScope string) Rule {
	return Rule{
		ID:       id,
		Category: "auth",
		Severity: "critical",
		Evaluate: func(action Action, ctx Context) (Verdict, string) {
			switch action.Kind {
			case ActionNetworkReq, ActionShellExec:
			default:
				return Allow, ""
			}
			raw, _ := action.Args["credential"].(string)
			if raw == "" {
				return Allow, ""
			}

			token, err := jwt.Parse([]byte(raw), jwt.WithKeySet(keySet), jwt.WithValidate(true))
			if err != nil {
				return Deny, fmt.Sprintf("credential verification failed: %s", err)
			}
			scopeVal, ok := token.Get("scope")
			if !ok {
				return Deny, "credential missing scope claim"
			}
			scope, _ := scopeVal.(string)
			if requiredScope != "" && !hasScope(scope, requiredScope) {
				return Deny, fmt.Sprintf("credential scope %q missing required %q", scope, requiredScope)
			}
			return Allow, ""
		},
	}
}

func hasScope(scopes, required string) bool {
	start := 0
	for i := 0; i <= len(scopes); i++ {
		if i == len(scopes) || scopes[i] == ' ' {
			if scopes[start:i] == required {
				return true
			}
			start = i + 1
		}
	}
	return false
}

// signingAlgorithms documents the algorithms conduit accepts when verifying
// credential tokens; jwa is imported for this reference even though
// jwt.Parse's default algorithm negotiation is usually sufficient.
var signingAlgorithms = []jwa.SignatureAlgorithm{jwa.RS256, jwa.ES256}
