// SPDX-License-Identifier: EPL-2.0

package bank

import "github.com/pkg/errors"

var (
	ErrUnknownSound   = errors.New("no sound with that id in bank")
	ErrDuplicateSound = errors.New("sound id listed twice in manifest")
	ErrInvalidEntry   = errors.New("invalid manifest entry")
)
