package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateAccountRequest is the JSON payload for registering an account.
type CreateAccountRequest struct {
	Email string `json:"email" binding:"required,email,max=320" example:"jane@example.com"`
	Name  string `json:"name"  binding:"required,min=1,max=255" example:"Jane Doe"`
	// Role is member (default) or admin.
	Role string `json:"role" binding:"omitempty,oneof=member admin" example:"member"`
}

// CreateAccount godoc
// @ID          createAccount
// @Summary     Register an account
// @Description Validates the payload and creates an account. A registered email yields EMAIL_TAKEN.
// @Tags        Accounts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateAccountRequest  true  "Account payload"
//
// @Success     201  {object}  domain.Account
// @Failure     400  {object}  errorhandler.Envelope  "Validation error or email taken"
// @Failure     500  {object}  errorhandler.Envelope  "Internal error"
// @Router      /accounts [post]
func (h *Handlers) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.accounts.Register(c.Request.Context(), req.Email, req.Name, req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// GetAccount godoc
// @ID          getAccount
// @Summary     Fetch an account
// @Description Returns the account when the caller owns it or is an admin.
// @Tags        Accounts
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Caller account id (demo header)"
// @Param       id         path    string  true  "Account id (UUID)"
//
// @Success     200  {object}  domain.Account
// @Failure     400  {object}  errorhandler.Envelope  "Malformed id"
// @Failure     401  {object}  errorhandler.Envelope  "Missing caller"
// @Failure     403  {object}  errorhandler.Envelope  "Caller may not read this account"
// @Failure     404  {object}  errorhandler.Envelope  "Unknown account"
// @Failure     500  {object}  errorhandler.Envelope  "Internal error"
// @Router      /accounts/{id} [get]
func (h *Handlers) GetAccount(c *gin.Context) {
	a, err := h.accounts.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}
