package domain

import "errors"

var (
	// ErrUserNotFound is returned when an operation names an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserNameRequired is returned when creating a user with a blank name.
	ErrUserNameRequired = errors.New("user name is required")
	// ErrUserNameTaken is returned when a name collides case-insensitively.
	ErrUserNameTaken = errors.New("user name already exists")
	// ErrNoActiveSession is returned when a user acts before scanning cards.
	ErrNoActiveSession = errors.New("no active review session")
	// ErrCardIndexOutOfRange signals a caller referencing a card the session does not hold.
	ErrCardIndexOutOfRange = errors.New("card index out of range")
	// ErrAlreadySubmitted is returned when mutating or resubmitting a finalized card.
	ErrAlreadySubmitted = errors.New("card already submitted")
	// ErrIncomplete is returned when submitting a card whose response is not complete.
	ErrIncomplete = errors.New("card response incomplete")
	// ErrWrongCardKind is returned when an action does not apply to the card.
	ErrWrongCardKind = errors.New("action does not apply to card kind")
	ErrUnknownOption = errors.New("option not found")
	ErrUnknownItem   = errors.New("true/false item not found")
	ErrUnknownBlank  = errors.New("blank not found")
	ErrUnknownToken  = errors.New("drag token not found")
	// ErrInvalidGrade is returned when a self-grade is neither correct nor incorrect.
	ErrInvalidGrade = errors.New("self grade must be correct or incorrect")
	// ErrTextRevealed is returned when editing a free-text answer after the model answer was shown.
	ErrTextRevealed = errors.New("answer already revealed")
	// ErrSourceNotFound indicates a card source could not be located.
	ErrSourceNotFound = errors.New("card source not found")
	// ErrScanSuperseded is returned when a newer scan for the same scope started.
	ErrScanSuperseded = errors.New("scan superseded by a newer scan")
)
