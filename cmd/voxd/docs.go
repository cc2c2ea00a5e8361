package main

// General API documentation for swaggo. Run `swag init -g cmd/voxd/docs.go`
// to generate docs, then build with -tags=swagger to serve them.
//
// @title           voxd API
// @version         1.0
// @description     OpenAI-compatible speech synthesis with on-demand model residency, custom voices and PCM streaming.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
