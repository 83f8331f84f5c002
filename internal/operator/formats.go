package operator

// IOType identifies the medium a Source reads from or a Target writes to.
type IOType string

const (
	IOFile      IOType = "file"
	IOKafka     IOType = "kafka"
	IOWebsocket IOType = "websocket"
	IORDB       IOType = "rdb"
	IOStdin     IOType = "stdin"
	IOStdout    IOType = "stdout"
)

// ValidIOTypes lists the accepted IO types.
var ValidIOTypes = map[IOType]bool{
	IOFile:      true,
	IOKafka:     true,
	IOWebsocket: true,
	IORDB:       true,
	IOStdin:     true,
	IOStdout:    true,
}

// DataFormat identifies the record or serialization format on an edge of
// the plan.
type DataFormat string

const (
	FormatCSV      DataFormat = "CSV"
	FormatJSON     DataFormat = "JSON"
	FormatXML      DataFormat = "XML"
	FormatSQL      DataFormat = "SQL"
	FormatNTriples DataFormat = "NT"
	FormatNQuads   DataFormat = "NQ"
	FormatTurtle   DataFormat = "TTL"
)

// ValidDataFormats lists the accepted data formats.
var ValidDataFormats = map[DataFormat]bool{
	FormatCSV:      true,
	FormatJSON:     true,
	FormatXML:      true,
	FormatSQL:      true,
	FormatNTriples: true,
	FormatNQuads:   true,
	FormatTurtle:   true,
}

// Extension returns the conventional file extension for a serialization
// format, without the dot. Record formats return their lower-case name.
func (f DataFormat) Extension() string {
	switch f {
	case FormatNTriples:
		return "nt"
	case FormatNQuads:
		return "nq"
	case FormatTurtle:
		return "ttl"
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	case FormatSQL:
		return "sql"
	default:
		return "out"
	}
}
