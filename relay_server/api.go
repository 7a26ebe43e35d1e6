package main

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTP companions to the socket signup/login actions. They share the same
// account and lockout logic, so success and failure semantics match the
// persistent connection exactly.

func HandleAPISignup(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request payload"})
		return
	}

	if errPayload := createAccount(req.Username, req.Password, req.Email); errPayload != nil {
		c.JSON(400, gin.H{"error": errPayload})
		return
	}
	c.JSON(200, gin.H{"success": "User created. Please log in."})
}

func HandleAPILogin(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request payload"})
		return
	}

	outcome, token, errMsg := authenticateUser(req.Username, req.Password, time.Now().UTC())
	switch outcome {
	case loginSuspended:
		c.JSON(403, gin.H{"error": errMsg})
	case loginRejected:
		c.JSON(401, gin.H{"error": errMsg})
	case loginFailed:
		c.JSON(500, gin.H{"error": errMsg})
	default:
		c.JSON(200, gin.H{"token": token, "user": req.Username})
	}
}
