// Copyright (C) 2025 FlavorGenius
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import "regexp"

// Intent classifies a raw question before any request is built.
type Intent int

const (
	// IntentAsk means the question goes to the backend as usual.
	IntentAsk Intent = iota

	// IntentPurchase means the question triggers the purchase flow; no
	// request is built or sent.
	IntentPurchase
)

// Detector classifies raw question text.
//
// The interface is deliberately narrow so the naive default can be
// replaced (for example by a classifier service) without touching the
// session controller or the merge engine.
type Detector interface {
	Detect(text string) Intent
}

// purchaseDetector triggers on a substring pattern in the raw question.
type purchaseDetector struct {
	pattern *regexp.Regexp
}

// NewPurchaseDetector creates the default purchase-intent detector. It
// matches the literal word "buy" anywhere in the question, the trigger
// the purchase flow has always used.
func NewPurchaseDetector() Detector {
	return &purchaseDetector{pattern: regexp.MustCompile(`buy`)}
}

// Detect reports IntentPurchase when the trigger pattern matches.
func (d *purchaseDetector) Detect(text string) Intent {
	if d.pattern.MatchString(text) {
		return IntentPurchase
	}
	return IntentAsk
}

var _ Detector = (*purchaseDetector)(nil)
