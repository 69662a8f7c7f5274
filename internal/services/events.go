package services

// Realtime event types pushed to match participants and lobby members.
const (
	EventLobbyJoined  = "lobby.joined"
	EventLobbyLeft    = "lobby.left"
	EventLobbyUpdated = "lobby.updated"
	EventLobbyExpired = "lobby.expired"

	EventMatchFound     = "match.found"
	EventMatchStarted   = "match.started"
	EventMatchCancelled = "match.cancelled"
	EventMatchCompleted = "match.completed"

	EventOpponentDisconnected = "match.opponentDisconnected"
	EventOpponentReconnected  = "match.opponentReconnected"
	EventReconnected          = "match.reconnected"
	EventOpponentForfeited    = "match.opponentForfeited"
	EventForfeited            = "match.forfeited"

	EventPowerUpActivated = "match.powerUpActivated"
	EventPowerUpCancelled = "match.powerUpCancelled"
	EventTurnChanged      = "match.turnChanged"
)
