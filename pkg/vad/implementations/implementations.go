// Package implementations picks a concrete voice activity classifier.
package implementations

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audiopipeline/pkg/vad"
	"github.com/xaionaro-go/audiopipeline/pkg/vad/implementations/energy"
	"github.com/xaionaro-go/audiopipeline/pkg/vad/implementations/fvad"
)

// NewClassifierAuto returns the best classifier available in this build:
// libfvad when compiled in, otherwise the pure-Go energy classifier. The
// mode is the libfvad aggressiveness (0..3) and is ignored by the
// fallback.
func NewClassifierAuto(
	ctx context.Context,
	mode int,
) vad.Classifier {
	var mErr *multierror.Error

	classifier, err := fvad.New(mode)
	logger.Debugf(ctx, "initializing classifier %T result is %v", classifier, err)
	if err == nil {
		return classifier
	}
	mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize %T: %w", classifier, err))

	logger.Infof(ctx, "falling back to the energy classifier: %v", mErr.ErrorOrNil())
	return energy.New()
}
