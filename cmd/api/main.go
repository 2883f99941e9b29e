package main

// @title lingua-stream APIs
// @version 1.0
// @description Streaming chat completions over remote and on-device models.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:9089
// @BasePath /
// @schemes http
import (
	_ "lingua-stream/docs"
	protocol "lingua-stream/protocal"

	_ "github.com/arsmn/fiber-swagger/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := protocol.ServeHTTP(); err != nil {
		logrus.Fatalf("lingua-stream stopped: %v", err)
	}
}
