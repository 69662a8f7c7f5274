package services

// Service errors
var (
	ErrNotInLobby           = &ServiceError{Message: "player is not in the lobby"}
	ErrNoContentAvailable   = &ServiceError{Message: "no questions available for this match"}
	ErrPlayersNotFound      = &ServiceError{Message: "one or both players left the lobby"}
	ErrDuplicateSubmission  = &ServiceError{Message: "results already submitted for this match"}
	ErrInvalidMatchState    = &ServiceError{Message: "match is not in a state that allows this operation"}
	ErrNotParticipant       = &ServiceError{Message: "user is not a participant of this match"}
	ErrPowerUpOnCooldown    = &ServiceError{Message: "power-up is on cooldown"}
	ErrPowerUpNotEquipped   = &ServiceError{Message: "no power-up equipped"}
	ErrPowerUpsDisabled     = &ServiceError{Message: "power-ups are disabled for this match"}
	ErrNotYourTurn          = &ServiceError{Message: "it is not this player's turn"}
	ErrInvalidCustomSetting = &ServiceError{Message: "question duration must be 30, 45 or 60 seconds"}
)

// ServiceError represents a service-level error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}
