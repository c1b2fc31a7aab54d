package output

// GraphNode is one table of the lineage graph.
type GraphNode struct {
	Table    string   `json:"table"`
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
}

// GraphLevel groups the tables that only depend on earlier levels.
type GraphLevel struct {
	Level  int         `json:"level"`
	Tables []GraphNode `json:"tables"`
}

// GraphOutput is the JSON shape of the graph command.
type GraphOutput struct {
	Levels      []GraphLevel `json:"levels,omitempty"`
	Cycle       []string     `json:"cycle,omitempty"`
	Tables      []GraphNode  `json:"tables,omitempty"`
	Sources     []string     `json:"sources"`
	Sinks       []string     `json:"sinks"`
	TotalTables int          `json:"total_tables"`
	TotalEdges  int          `json:"total_edges"`
}
