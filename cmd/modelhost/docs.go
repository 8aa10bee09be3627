package main

// General API documentation for swaggo. Generate with
// `swag init -g cmd/modelhost/docs.go`, then build with -tags=swagger to
// serve it under /swagger.
//
// @title           modelhost API
// @version         1.0
// @description     HTTP API for local model management, inference and chat sessions.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
