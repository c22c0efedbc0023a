package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/meshcall/internal/api/http/converter"
)

// WebRTCController serves the ICE configuration clients build their peer
// connections with.
type WebRTCController struct {
	stunServers []string
}

func NewWebRTCController(stunServers []string) *WebRTCController {
	return &WebRTCController{stunServers: append([]string(nil), stunServers...)}
}

func (c *WebRTCController) ICEServers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, converter.ICEServersToApi(c.stunServers))
}
