package main

// General API documentation for swaggo. Run `swag init -g cmd/inferd/docs.go -o internal/httpapi/docs`.
//
// @title           inferd API
// @version         1.0
// @description     Text generation over a locally loaded causal language model.
//
// @contact.name   inferd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
