package nodes

// Graph node keys.
const (
	NodeInput     = "Input"
	NodeChatModel = "ChatModel"
	NodeTools     = "ToolExecutor"
)
