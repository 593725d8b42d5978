package assets

import "context"

// Resolve maps a reference to the current canonical question. A nil result
// means the reference failed to decode, the asset is absent or not an mcq
// asset, or no question in the asset matches: all of these are normal, silent
// outcomes, never errors. The error return carries store failures only.
func (s *Service) Resolve(ctx context.Context, ref Reference) (*CanonicalQuestion, error) {
	key, ok := ref.Decode()
	if !ok {
		return nil, nil
	}
	return s.resolveKey(ctx, key)
}

func (s *Service) resolveKey(ctx context.Context, key QuestionKey) (*CanonicalQuestion, error) {
	asset, err := s.library.Asset(ctx, key.AssetID)
	if err != nil {
		s.logError(opResolve, "asset_load_failed", err)
		return nil, newServiceError(opResolve, "asset_load_failed", err)
	}
	if asset == nil || asset.Kind != AssetKindMCQ {
		return nil, nil
	}
	for i := range asset.Questions {
		if asset.Questions[i].ID == key.QuestionID {
			question := asset.Questions[i]
			return &question, nil
		}
	}
	return nil, nil
}
