// Package auth issues and checks the bearer tokens that guard catalog
// replacement on the HTTP API.
//
// Tokens are HS256 JWTs carrying a subject, an optional issuer and a
// space-separated scope list:
//
//	token, _ := auth.GenerateToken("ops", auth.ScopeCatalogWrite, secret, "pilightgw", time.Hour)
//	claims, err := auth.ParseToken(token, secret, "pilightgw")
//	if err == nil && claims.HasScope(auth.ScopeCatalogWrite) { ... }
package auth
