package gateway

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// serveFile answers with the file's bytes when it exists and is a regular
// file, and with the 404 page otherwise. The file is read per request.
func (g *Gateway) serveFile(path, contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := readRegular(path)
		if !ok {
			g.notFound(c)
			return
		}
		c.Data(http.StatusOK, contentType, body)
	}
}

func (g *Gateway) notFound(c *gin.Context) {
	if body, ok := readRegular(filepath.Join(g.templatesDir, "error.html")); ok {
		c.Data(http.StatusNotFound, contentTypeHTML, body)
		return
	}
	c.Data(http.StatusNotFound, contentTypePlain, []byte("404 Not Found"))
}

func readRegular(path string) ([]byte, bool) {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return b, true
}
