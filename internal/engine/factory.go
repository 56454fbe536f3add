package engine

import (
	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/types"
)

func New(accountID string, universe []types.Stock, deps Deps) interfaces.Engine {
	return newEngine(accountID, universe, deps)
}
