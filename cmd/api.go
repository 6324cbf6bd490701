package cmd

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/cctp-orchestrator/relayer"
	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

const defaultAPIAddress = "localhost:8000"

// API exposes the orchestrator over HTTP for wallet frontends.
type API struct {
	orchestrator *relayer.Orchestrator
	processor    *relayer.Processor
	registry     *types.ChainRegistry
	logger       log.Logger
}

type startTransferRequest struct {
	ID string `json:"id"`
	types.TransferRequest
}

type stageRequest struct {
	ExpectedStage string `json:"expected_stage" binding:"required"`
	TxHash        string `json:"tx_hash"`
	Reason        string `json:"reason"`
}

type transferView struct {
	*types.TransferState
	AmountUSDC string `json:"amount_usdc"`
}

func newAPI(o *relayer.Orchestrator, p *relayer.Processor, registry *types.ChainRegistry, logger log.Logger) *API {
	return &API{orchestrator: o, processor: p, registry: registry, logger: logger.With("component", "api")}
}

func (api *API) Router(trustedProxies []string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}

	router.GET("/chains", api.listChains)
	router.GET("/transfers", api.listTransfers)
	router.POST("/transfers", api.startTransfer)
	router.GET("/transfers/:id", api.getTransfer)
	router.DELETE("/transfers/:id", api.abandonTransfer)
	router.POST("/transfers/:id/advance", api.advanceTransfer)
	router.POST("/transfers/:id/submit", api.submitTransaction)
	router.POST("/transfers/:id/reject", api.rejectTransaction)
	router.POST("/transfers/:id/resume", api.resumeTransfer)
	return router, nil
}

func startAPI(a *AppState, api *API) {
	logger := a.Logger
	cfg := a.Config

	router, err := api.Router(cfg.API.TrustedProxies)
	if err != nil {
		logger.Error("Unable to set trusted proxies on API server: " + err.Error())
		os.Exit(1)
	}

	address := cfg.API.Address
	if address == "" {
		address = defaultAPIAddress
	}
	logger.Info("Starting API server", "address", address)
	if err := router.Run(address); err != nil {
		logger.Error("Unable to start API server: " + err.Error())
		os.Exit(1)
	}
}

func (api *API) listChains(c *gin.Context) {
	c.JSON(http.StatusOK, api.registry.Chains())
}

func (api *API) listTransfers(c *gin.Context) {
	all, err := api.orchestrator.List(c.Request.Context())
	if err != nil {
		api.fail(c, err)
		return
	}
	views := make([]transferView, 0, len(all))
	for _, st := range all {
		views = append(views, view(st))
	}
	c.JSON(http.StatusOK, views)
}

func (api *API) startTransfer(c *gin.Context) {
	var req startTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.fail(c, types.NewTransferError(types.CodeValidation, "invalid request body: %v", err))
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	st, err := api.orchestrator.Start(c.Request.Context(), req.ID, req.TransferRequest)
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view(st))
}

func (api *API) getTransfer(c *gin.Context) {
	st, err := api.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(st))
}

func (api *API) abandonTransfer(c *gin.Context) {
	st, err := api.orchestrator.Abandon(c.Request.Context(), c.Param("id"))
	if err != nil {
		api.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(st))
}

func (api *API) advanceTransfer(c *gin.Context) {
	api.withStage(c, func(id string, expected types.Stage, _ stageRequest) (*types.TransferState, error) {
		return api.orchestrator.Advance(c.Request.Context(), id, expected)
	})
}

func (api *API) submitTransaction(c *gin.Context) {
	api.withStage(c, func(id string, expected types.Stage, req stageRequest) (*types.TransferState, error) {
		return api.orchestrator.Submit(c.Request.Context(), id, expected, req.TxHash)
	})
}

func (api *API) rejectTransaction(c *gin.Context) {
	api.withStage(c, func(id string, expected types.Stage, req stageRequest) (*types.TransferState, error) {
		return api.orchestrator.Reject(c.Request.Context(), id, expected, req.Reason)
	})
}

func (api *API) resumeTransfer(c *gin.Context) {
	api.withStage(c, func(id string, expected types.Stage, _ stageRequest) (*types.TransferState, error) {
		return api.orchestrator.Resume(c.Request.Context(), id, expected)
	})
}

// withStage binds the expected stage, runs op and hands any pending wait to the processor.
func (api *API) withStage(c *gin.Context, op func(id string, expected types.Stage, req stageRequest) (*types.TransferState, error)) {
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.fail(c, types.NewTransferError(types.CodeValidation, "invalid request body: %v", err))
		return
	}
	expected, err := types.ParseStage(req.ExpectedStage)
	if err != nil {
		api.fail(c, types.NewTransferError(types.CodeValidation, "%v", err))
		return
	}

	id := c.Param("id")
	st, err := op(id, expected, req)
	if err != nil {
		api.fail(c, err)
		return
	}
	if api.processor != nil && !st.Stage.Terminal() && st.AwaitingWait() {
		api.processor.Enqueue(id)
	}
	c.JSON(http.StatusOK, view(st))
}

func (api *API) fail(c *gin.Context, err error) {
	var te *types.TransferError
	if !errors.As(err, &te) {
		api.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(statusFor(te.Code), te)
}

func statusFor(code types.Code) int {
	switch code {
	case types.CodeValidation, types.CodeUnsupportedChain:
		return http.StatusBadRequest
	case types.CodeTransferNotFound:
		return http.StatusNotFound
	case types.CodeStaleState, types.CodeTransferExists:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func view(st *types.TransferState) transferView {
	return transferView{TransferState: st, AmountUSDC: types.FormatUSDCUnits(st.Amount)}
}
