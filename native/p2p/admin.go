package p2p

// Initialize writes the singleton module configuration and resets the order
// counter. It is self-authorizing at genesis: the supplied admin identity is
// the principal that must approve the call. A second initialization is
// rejected regardless of caller.
func (e *Engine) Initialize(admin, arbiter, pauser [20]byte, token string, maxDurationSecs, fiatTimeoutSecs uint64) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireAuth(admin); err != nil {
		return nil, err
	}
	if _, ok := e.state.ConfigGet(); ok {
		return nil, ErrAlreadyInitialized
	}
	if err := validateInitializeInputs(maxDurationSecs, fiatTimeoutSecs); err != nil {
		return nil, err
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Admin:           admin,
		Arbiter:         arbiter,
		Pauser:          pauser,
		Token:           normalized,
		MaxDurationSecs: maxDurationSecs,
		FiatTimeoutSecs: fiatTimeoutSecs,
		Paused:          false,
	}
	if err := e.state.ConfigPut(cfg); err != nil {
		return nil, err
	}
	if err := e.state.OrderCountPut(0); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(cfg))
	return cfg.Clone(), nil
}

// Pause halts every mutating operation until the pauser lifts the flag.
func (e *Engine) Pause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAuth(caller); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := ensurePauser(cfg, caller); err != nil {
		return err
	}
	if cfg.Paused {
		return ErrAlreadyPaused
	}
	cfg.Paused = true
	if err := e.state.ConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewPausedEvent(caller))
	return nil
}

// Unpause restores normal operation.
func (e *Engine) Unpause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAuth(caller); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := ensurePauser(cfg, caller); err != nil {
		return err
	}
	if !cfg.Paused {
		return ErrAlreadyUnpaused
	}
	cfg.Paused = false
	if err := e.state.ConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewUnpausedEvent(caller))
	return nil
}

// Config returns a copy of the module configuration.
func (e *Engine) Config() (*Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// OrderCount returns the number of orders ever created, which is also the
// next identifier to assign.
func (e *Engine) OrderCount() (uint64, error) {
	if _, err := e.loadConfig(); err != nil {
		return 0, err
	}
	count, ok := e.state.OrderCountGet()
	if !ok {
		return 0, nil
	}
	return count, nil
}
