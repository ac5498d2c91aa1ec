package service

import gatekeeper "github.com/layer-3/gatekeeper"

var _ gatekeeper.Client = (*AuthService)(nil)
