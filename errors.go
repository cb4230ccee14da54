package dynaq

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConditionNotMet is returned when a write's guard condition was not
// satisfied. Single-item operations return it directly; bulk operations
// record the failing input on [BatchResult.Failed] instead.
var ErrConditionNotMet = errors.New("condition not met")

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
