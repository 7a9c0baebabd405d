//go:build !fvad
// +build !fvad

package fvad

import (
	"fmt"

	"github.com/xaionaro-go/audiopipeline/pkg/vad"
)

type Classifier = vad.Dummy

func New(mode int) (*Classifier, error) {
	return nil, fmt.Errorf("built without tag 'fvad'")
}
