package backend

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
)

// decodeOptions copies a validated option bag into a typed struct.
// Fields keep the defaults already set on out when absent from the bag.
func decodeOptions(options map[string]any, out any) error {
	if len(options) == 0 {
		return nil
	}
	b, err := json.Marshal(options)
	if err != nil {
		return common.NewFailure(constants.FailureInternal, "encode options", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return common.NewFailure(constants.FailureInternal, fmt.Sprintf("decode options into %T", out), err)
	}
	return nil
}
