// Package timeouts defines shared timeout constants used across the bot.
// Centralizing these values prevents drift between dependency boundaries
// and makes the durations discoverable.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the bot's health endpoint.
const GRPCDial = 2 * time.Second

// EngineRequest caps the time allowed for a single HTTP request to the
// sibling engine API. Engine move search can take a while at high depth,
// so this is looser than a typical intra-service call.
const EngineRequest = 30 * time.Second

// EngineProbe caps a single readiness or health probe against the engine.
const EngineProbe = 2 * time.Second

// Shutdown limits how long the process waits for in-flight work during
// graceful shutdown. It must stay under the orchestrator's kill grace
// period so cleanup always finishes before a forced stop.
const Shutdown = 5 * time.Second
