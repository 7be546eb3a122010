package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/lookbook/pkg/vector"
	"github.com/papercomputeco/lookbook/pkg/vector/pgvector"
	"github.com/papercomputeco/lookbook/pkg/vector/sqlitevec"
)

type NewVectorStoreOpts struct {
	ProviderType string
	TargetURL    string
	Dimensions   uint
	Logger       *slog.Logger
}

// NewVectorStore opens the vector store named by o.ProviderType.
func NewVectorStore(ctx context.Context, o *NewVectorStoreOpts) (vector.Store, error) {
	switch o.ProviderType {
	case "sqlite", "sqlite-vec":
		s, err := sqlitevec.NewStore(sqlitevec.Config{
			DBPath:     o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "pgvector":
		s, err := pgvector.NewStore(ctx, pgvector.Config{
			ConnString: o.TargetURL,
			Dimensions: o.Dimensions,
		}, o.Logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
