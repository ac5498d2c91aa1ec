package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	gatekeeper "github.com/layer-3/gatekeeper"
	"github.com/layer-3/gatekeeper/core"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	client           gatekeeper.Client
	exposeResetToken bool
}

// NewAuthHandlers creates new auth handlers.
// With exposeResetToken the reset token is returned to the caller instead of
// only being published, which is meant for development setups without a mailer.
func NewAuthHandlers(client gatekeeper.Client, exposeResetToken bool) *AuthHandlers {
	return &AuthHandlers{
		client:           client,
		exposeResetToken: exposeResetToken,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type walletRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}

type signatureRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse describes an identity by the credential it authenticated with.
type UserResponse struct {
	UserID        string `json:"userId"`
	Email         string `json:"email,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// AuthResponse is returned by register and login endpoints.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func userResponse(subject string, claim core.CredentialClaim) UserResponse {
	user := UserResponse{UserID: subject}
	switch c := claim.(type) {
	case core.EmailClaim:
		user.Email = c.Value()
	case core.WalletClaim:
		user.WalletAddress = c.Value()
	}
	return user
}

func authResponse(auth *core.Authentication) AuthResponse {
	return AuthResponse{
		Token: auth.Token,
		User:  userResponse(auth.Identity.ID, auth.Claim),
	}
}

// Register handles email registration
func (h *AuthHandlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindingError(err))
		return
	}

	auth, err := h.client.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse(auth))
}

// Login handles email and password login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindingError(err))
		return
	}

	auth, err := h.client.LoginWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(auth))
}

// Nonce handles the wallet challenge request
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req walletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindingError(err))
		return
	}

	nonce, err := h.client.RequestChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// LoginWithSignature handles the wallet login request
func (h *AuthHandlers) LoginWithSignature(c *gin.Context) {
	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindingError(err))
		return
	}

	auth, err := h.client.LoginWithSignature(c.Request.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(auth))
}

// RequestPasswordReset handles the reset request. Unless reset tokens are
// exposed, the answer does not reveal whether the email is registered.
func (h *AuthHandlers) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindingError(err))
		return
	}

	token, err := h.client.RequestPasswordReset(c.Request.Context(), req.Email)
	if errors.Is(err, core.ErrIdentityNotFound) && !h.exposeResetToken {
		err = nil
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	if h.exposeResetToken {
		c.JSON(http.StatusAccepted, gin.H{"message": "password reset requested", "resetToken": token})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the email is registered, a reset link has been sent"})
}

// ResetPassword completes a password reset
func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, bindingError(err))
		return
	}

	if err := h.client.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// Me returns the authenticated identity
func (h *AuthHandlers) Me(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		abortWithError(c, errors.New("session missing from request context"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userResponse(session.Subject, session.Claim)})
}

// Health reports that the process is serving requests
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
