// Package secret resolves secret references in configuration values.
//
// A value is first expanded against the environment: ${NAME} must be set,
// and $$ is a literal dollar. The result may then carry references of the
// form secretref:<provider>:<ref>, either as the whole value or inline:
//
//	D8CACHE_PURGE_TOKEN=secretref:env:VARNISH_TOKEN
//	D8CACHE_PURGE_JWT_SECRET=secretref:file:/run/secrets/purge_jwt
//
// Providers never log resolved values.
package secret
