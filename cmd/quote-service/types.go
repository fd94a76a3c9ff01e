package main

import (
	"time"

	"simpleswap/pkg/router"
)

type CachedQuote struct {
	router.QuoteResponse
	LastUpdate time.Time `json:"lastUpdate"`
	TimeTaken  string    `json:"timeTaken"`
}

type QuotePair struct {
	InputMint string
	Amount    string
	Label     string
}

type VaultInfo struct {
	PoolID     string    `json:"poolId"`
	ProgramID  string    `json:"programId"`
	MintA      string    `json:"mintA"`
	MintB      string    `json:"mintB"`
	VaultA     string    `json:"vaultA"`
	VaultB     string    `json:"vaultB"`
	ReserveA   uint64    `json:"reserveA"`
	ReserveB   uint64    `json:"reserveB"`
	LastUpdate time.Time `json:"lastUpdate"`
}

type QuoteError struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	LastUpdate   time.Time `json:"lastUpdate"`
	CachedRoutes int       `json:"cachedRoutes"`
	Pools        int       `json:"pools"`
	WebSocket    bool      `json:"webSocket"`
	Uptime       string    `json:"uptime"`
}
