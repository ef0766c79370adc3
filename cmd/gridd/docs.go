package main

// General API documentation for swaggo. Regenerate the docs package with
// `swag init -g cmd/gridd/docs.go` after changing routes.
//
// @title           gridd API
// @version         1.0
// @description     HTTP API for the gridd session scheduler.
//
// @contact.name   gridd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
