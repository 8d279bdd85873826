package usecase

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/domain/model"
	"github.com/m-mizutani/reltrace/pkg/domain/types"
)

// MaxTagDepth bounds the annotated tag chain followed by ResolveTag
const MaxTagDepth = 10

// ResolveTag follows a tag reference chain down to a commit and returns the commit hash
// and date. Chains longer than MaxTagDepth, broken links and terminals that are neither
// commit nor tag fail with types.ErrUnresolvableTag.
func ResolveTag(ref *model.TagRef) (string, time.Time, error) {
	node := ref
	for depth := 0; depth <= MaxTagDepth; depth++ {
		if node == nil {
			return "", time.Time{}, goerr.Wrap(types.ErrUnresolvableTag, "tag chain is broken",
				goerr.V("depth", depth))
		}

		switch node.Kind {
		case model.TagKindCommit:
			return node.Hash, node.CommittedAt, nil
		case model.TagKindTag:
			node = node.Target
		default:
			return "", time.Time{}, goerr.Wrap(types.ErrUnresolvableTag, "tag points to an unsupported object",
				goerr.V("kind", node.Kind),
				goerr.V("hash", node.Hash),
				goerr.V("depth", depth),
			)
		}
	}

	return "", time.Time{}, goerr.Wrap(types.ErrUnresolvableTag, "tag chain is too deep",
		goerr.V("max_depth", MaxTagDepth))
}
