package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	paygate "github.com/x402lab/paygate"
	"github.com/x402lab/paygate/policy"
	"github.com/x402lab/paygate/types"
)

type handler struct {
	gw *paygate.Gateway
}

func newHandler(gw *paygate.Gateway) *handler {
	return &handler{gw: gw}
}

// Health reports liveness. No dependencies are checked.
func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Models proxies the upstream model list; no payment gating.
func (h *handler) Models(c *gin.Context) {
	h.gw.Forwarder().Models(c.Request.Context(), c.Writer)
}

// ChatCompletions is the payment-gated chat endpoint. The envelope
// shape is checked first, then the payment decision is made, and only
// on Allow does a single upstream call happen.
func (h *handler) ChatCompletions(c *gin.Context) {
	h.gw.Metrics().IncCounter("requests_total", map[string]string{"result": "received"})

	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Messages array is required"})
		return
	}
	if req.Model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Model is required"})
		return
	}

	decision := h.gw.Policy().Decide(c.Request.Context(), &req, resourceURL(c))

	switch decision.Action {
	case policy.ActionChallenge:
		h.gw.Metrics().IncCounter("payments_required_total", nil)
		c.JSON(http.StatusPaymentRequired, types.PaymentRequired{
			Error:       "Payment required. Send the payment and retry with the transaction hash.",
			Accepts:     []types.PaymentRequirements{*decision.Challenge},
			X402Version: types.X402Version,
		})

	case policy.ActionReject:
		h.gw.Metrics().IncCounter("payments_rejected_total", map[string]string{
			"result": string(decision.Result.Reason),
		})
		c.JSON(http.StatusPaymentRequired, types.PaymentRequired{
			Error:       "Invalid payment transaction",
			Details:     decision.Result.Error,
			Accepts:     []types.PaymentRequirements{*decision.Challenge},
			X402Version: types.X402Version,
		})

	case policy.ActionAllow:
		h.gw.Forwarder().ChatCompletions(c.Request.Context(), &req, c.Writer)
	}
}

// resourceURL reconstructs the absolute URL of the gated endpoint for
// the payment challenge.
func resourceURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}
