package app

// Application bundles the client core: configuration, logging, the REST
// client, the conversation store, the stream connector, and the controller
// that ties them together. The TUI and the headless commands both run on
// top of this.
type Application struct {
	Config     Config
	Logger     *Logger
	Client     *Client
	Store      *ConversationStore
	Stream     *StreamConnector
	Controller *RunLifecycleController
}

func NewApplication(cfg Config) *Application {
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = DefaultLogPath()
	}
	logger := NewFileLogger(logPath)
	client := NewClient(cfg, logger)
	store := NewConversationStore()
	stream := NewStreamConnector(cfg, logger)
	controller := NewRunLifecycleController(store, stream, client.EventsURL, logger)
	controller.SetDefaultModel(cfg.DefaultModel)
	return &Application{
		Config:     cfg,
		Logger:     logger,
		Client:     client,
		Store:      store,
		Stream:     stream,
		Controller: controller,
	}
}
