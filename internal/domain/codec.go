package domain

import (
	"encoding/json"
	"fmt"
)

type cardEnvelope struct {
	Kind CardKind        `json:"kind"`
	Card json.RawMessage `json:"card"`
}

// MarshalCard encodes a card with its kind as discriminator.
func MarshalCard(c Card) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cardEnvelope{Kind: c.Kind(), Card: body})
}

// UnmarshalCard decodes a card produced by MarshalCard.
func UnmarshalCard(data []byte) (Card, error) {
	var env cardEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode card envelope: %w", err)
	}
	switch env.Kind {
	case KindMultipleChoice:
		var c MultipleChoice
		err := json.Unmarshal(env.Card, &c)
		return c, err
	case KindTrueFalse:
		var c TrueFalse
		err := json.Unmarshal(env.Card, &c)
		return c, err
	case KindCloze:
		var c Cloze
		err := json.Unmarshal(env.Card, &c)
		return c, err
	case KindFreeText:
		var c FreeText
		err := json.Unmarshal(env.Card, &c)
		return c, err
	}
	return nil, fmt.Errorf("unknown card kind %q", env.Kind)
}

// Deck is an ordered card list with a JSON form that keeps variant types.
type Deck []Card

func (d Deck) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(d))
	for _, c := range d {
		raw, err := MarshalCard(c)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (d *Deck) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	deck := make(Deck, 0, len(raws))
	for _, raw := range raws {
		c, err := UnmarshalCard(raw)
		if err != nil {
			return err
		}
		deck = append(deck, c)
	}
	*d = deck
	return nil
}
