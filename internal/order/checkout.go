package order

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type checkoutState string

const (
	stateStarted   checkoutState = "STARTED"
	stateValidated checkoutState = "VALIDATED"
	statePriced    checkoutState = "PRICED"
	statePersisted checkoutState = "PERSISTED"
	stateFinalized checkoutState = "FINALIZED"
	stateRejected  checkoutState = "REJECTED"
)

var allowedTransitions = map[checkoutState]map[checkoutState]bool{
	stateStarted: {
		stateValidated: true,
		stateRejected:  true,
	},
	stateValidated: {
		statePriced:   true,
		stateRejected: true,
	},
	statePriced: {
		statePersisted: true,
		stateRejected:  true,
	},
	statePersisted: {
		stateFinalized: true,
		stateRejected:  true,
	},
	stateFinalized: {},
	stateRejected:  {},
}

var errInvalidCheckoutTransition = errors.New("invalid checkout state transition")

// checkout tracks one attempt through the pipeline.
type checkout struct {
	userID uuid.UUID
	state  checkoutState
}

func newCheckout(userID uuid.UUID) *checkout {
	return &checkout{userID: userID, state: stateStarted}
}

func (c *checkout) advance(next checkoutState) error {
	if !allowedTransitions[c.state][next] {
		log.Error().
			Stringer("user_id", c.userID).
			Str("current_state", string(c.state)).
			Str("next_state", string(next)).
			Msg("service: invalid checkout transition")
		return fmt.Errorf("%w: %s to %s", errInvalidCheckoutTransition, c.state, next)
	}

	log.Debug().
		Stringer("user_id", c.userID).
		Str("from", string(c.state)).
		Str("to", string(next)).
		Msg("service: checkout advanced")
	c.state = next
	return nil
}

// reject moves the attempt to REJECTED and hands err back to the caller.
func (c *checkout) reject(err error) error {
	if c.state == stateFinalized || c.state == stateRejected {
		return err
	}
	log.Warn().
		Err(err).
		Stringer("user_id", c.userID).
		Str("from", string(c.state)).
		Msg("service: checkout rejected")
	c.state = stateRejected
	return err
}
