package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Online Presence Service</title>
</head>
<body>
  <h1>Online Presence Service</h1>
  <p>Tracks which users are currently online through login, heartbeat and logout calls.</p>
  <ul>
    <li><code>GET  /api/online/count</code> current online user count</li>
    <li><code>GET  /api/online/users</code> current online users</li>
    <li><code>POST /api/online/login</code> <code>{"user_id": "..."}</code></li>
    <li><code>POST /api/online/heartbeat</code> <code>{"session_id": "..."}</code></li>
    <li><code>POST /api/online/logout</code> <code>{"session_id": "..."}</code></li>
    <li><code>POST /api/online/validate</code> <code>{"session_id": "..."}</code></li>
    <li><code>GET  /api/health</code> health check</li>
  </ul>
  <p>Sessions without a heartbeat for longer than the configured TTL are removed automatically.</p>
</body>
</html>
`

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}
