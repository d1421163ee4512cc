package forward

import "github.com/gin-gonic/gin"

type IHandler interface {
	Redrive(c *gin.Context)
	Wallet(c *gin.Context)
}
