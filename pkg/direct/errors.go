package direct

import "github.com/pkg/errors"

var (
	ErrNoObservations    = errors.New("no observations")
	ErrLengthMismatch    = errors.New("pixel and depth counts differ")
	ErrImageSize         = errors.New("unusable image sizes")
	ErrNilPose           = errors.New("nil pose")
	ErrInvalidIntrinsics = errors.New("invalid intrinsics")
	ErrInvalidConfig     = errors.New("invalid config")

	// ErrDegenerate comes back from a solve whose Hessian carries no
	// information (no valid points, textureless patches) or whose update
	// is NaN. The optimizer treats it as a stop signal, not a failure.
	ErrDegenerate = errors.New("degenerate normal equations")
)
