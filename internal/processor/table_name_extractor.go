package processor

import (
	"context"
	"io"
	"strings"

	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/sirupsen/logrus"
)

const (
	TableNameExtractorName = "TableNameExtractor"

	// AttrError is set on records routed to failure.
	AttrError = "tablemapper.error"

	MimeTypeSQL = "sql"
)

var PropTableName = PropertyDescriptor{
	Name:               "Table Name",
	Description:        "The name of the table to be created.",
	Required:           true,
	ExpressionLanguage: ScopeFlowFileAttributes,
	Validators:         []Validator{NonEmpty},
}

var (
	RelOriginal = Relationship{
		Name:        "original",
		Description: "A FlowFile is routed to this relationship when its contents have successfully been converted into a SQL statement",
	}
	RelSQL = Relationship{
		Name:        "sql",
		Description: "A FlowFile is routed to this relationship when its contents have successfully been converted into a SQL statement",
	}
	RelFailure = Relationship{
		Name: "failure",
		Description: "A FlowFile is routed to this relationship if it cannot be converted into a SQL statement. " +
			"Common causes include invalid JSON content or the JSON content missing a required field.",
	}
)

// TableNameExtractor emits the resolved "Table Name" as the content of a new
// record. The input JSON is not parsed and no SQL is generated, whatever the
// description says.
type TableNameExtractor struct{}

func (TableNameExtractor) Name() string { return TableNameExtractorName }

func (TableNameExtractor) Description() string {
	return "Map JSON object to SQL create table statement."
}

func (TableNameExtractor) Properties() []PropertyDescriptor {
	return []PropertyDescriptor{PropTableName}
}

func (TableNameExtractor) Relationships() []Relationship {
	return []Relationship{RelOriginal, RelSQL, RelFailure}
}

func (TableNameExtractor) WritesAttributes() []WritesAttribute {
	return []WritesAttribute{
		{Name: flowfile.AttrMimeType, Description: "Sets mime.type of FlowFile to sql"},
		{Name: AttrError, Description: "Reason a FlowFile was routed to failure"},
	}
}

func (p TableNameExtractor) OnTrigger(ctx context.Context, pctx *Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ff := s.Get()
	if ff == nil {
		return nil
	}
	log := pctx.Log.WithField("uuid", ff.ID)

	tableName, err := pctx.Evaluate(PropTableName.Name, ff)
	if err == nil && strings.TrimSpace(tableName) == "" {
		err = &ConfigurationError{Property: PropTableName.Name, Msg: "evaluated to an empty string"}
	}
	if err != nil {
		p.fail(log, s, ff, err)
		return nil
	}

	out := s.Create(ff)
	out, err = s.Write(out, func(w io.Writer) error {
		_, err := io.WriteString(w, tableName)
		return err
	})
	if err != nil {
		s.Remove(out)
		p.fail(log, s, ff, &WriteError{Err: err})
		return nil
	}
	out = s.PutAttribute(out, flowfile.AttrMimeType, MimeTypeSQL)

	s.Transfer(out, RelSQL)
	s.Transfer(ff, RelOriginal)
	log.WithField("table", tableName).Debug("table name extracted")
	return nil
}

func (TableNameExtractor) fail(log logrus.FieldLogger, s Session, ff *flowfile.FlowFile, err error) {
	log.WithError(err).Warn("routing to failure")
	ff = s.PutAttribute(ff, AttrError, err.Error())
	s.Transfer(ff, RelFailure)
}

func init() {
	Register(TableNameExtractorName, func() Processor { return TableNameExtractor{} })
}
