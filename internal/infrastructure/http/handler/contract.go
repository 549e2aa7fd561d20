package handler

import (
	"fmt"
	"net/http"

	"github.com/apascualco/cinemesh/internal/application"
	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/gin-gonic/gin"
)

type ContractHandler struct {
	contracts *application.ContractValidator
}

func NewContractHandler(contracts *application.ContractValidator) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

func (h *ContractHandler) Get(c *gin.Context) {
	name := c.Param("name")
	schema, ok := h.contracts.Schema(name)
	if !ok {
		respondError(c, fmt.Errorf("%w: %s", domain.ErrUnknownSchema, name))
		return
	}
	c.JSON(http.StatusOK, schema)
}
