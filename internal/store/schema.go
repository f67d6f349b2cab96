package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names.
const (
	tableParagraph        = "paragraph"
	tableAuthor           = "author"
	tableQuestion         = "question"
	tableRejectedQuestion = "rejected_question"
	tableAnswer           = "answer"
	tableRating           = "rating"
	tableMetadata         = "metadata"
	tableLLMRequestEvent  = "llm_request_event"
)

// textSize marks a string column as unbounded text.
const textSize = 2147483647

var (
	paragraphColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "page_name", Type: field.TypeString, Size: 1023, Default: ""},
		{Name: "section_name", Type: field.TypeString, Size: 1023, Default: ""},
		{Name: "subsection_name", Type: field.TypeString, Size: 1023, Default: ""},
		{Name: "subsubsection_name", Type: field.TypeString, Size: 1023, Default: ""},
		{Name: "text", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "section_hierarchy", Type: field.TypeString, Size: 8191, Default: ""},
		{Name: "text_cleaned", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "word_count", Type: field.TypeInt, Default: 0},
		{Name: "is_bad", Type: field.TypeBool, Default: false},
		{Name: "within_page_order", Type: field.TypeInt, Default: 0},
		// -1 until processed, then the order in which it was processed.
		{Name: "processed", Type: field.TypeInt, Default: -1},
	}
	paragraphTable = &schema.Table{
		Name:       tableParagraph,
		Columns:    paragraphColumns,
		PrimaryKey: []*schema.Column{paragraphColumns[0]},
		Indexes: []*schema.Index{
			{Name: "paragraph_page_name", Columns: []*schema.Column{paragraphColumns[1]}},
			{Name: "paragraph_processed", Columns: []*schema.Column{paragraphColumns[11]}},
		},
	}

	authorColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "model", Type: field.TypeString, Size: 1023},
		{Name: "prompt", Type: field.TypeString, Size: textSize},
		{Name: "username", Type: field.TypeString, Size: 1023, Nullable: true},
	}
	authorTable = &schema.Table{
		Name:       tableAuthor,
		Columns:    authorColumns,
		PrimaryKey: []*schema.Column{authorColumns[0]},
		Indexes: []*schema.Index{
			{Name: "author_model_prompt", Unique: true, Columns: []*schema.Column{authorColumns[1], authorColumns[2]}},
		},
	}

	questionColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "paragraph_id", Type: field.TypeInt},
		{Name: "scope", Type: field.TypeString, Size: 1023},
		{Name: "context", Type: field.TypeString, Size: textSize},
		{Name: "text", Type: field.TypeString, Size: textSize},
		{Name: "author_id", Type: field.TypeInt},
		{Name: "timestamp", Type: field.TypeString, Size: 255},
		{Name: "upvote", Type: field.TypeInt, Default: 0},
		{Name: "downvote", Type: field.TypeInt, Default: 0},
		{Name: "turns", Type: field.TypeString, Size: 255, Default: ""},
	}
	questionTable = &schema.Table{
		Name:       tableQuestion,
		Columns:    questionColumns,
		PrimaryKey: []*schema.Column{questionColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "question_paragraph",
				Columns:    []*schema.Column{questionColumns[1]},
				RefColumns: []*schema.Column{paragraphColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "question_author",
				Columns:    []*schema.Column{questionColumns[5]},
				RefColumns: []*schema.Column{authorColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "question_paragraph_id", Columns: []*schema.Column{questionColumns[1]}},
		},
	}

	rejectedQuestionColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "paragraph_id", Type: field.TypeInt},
		{Name: "scope", Type: field.TypeString, Size: 1023},
		{Name: "context", Type: field.TypeString, Size: textSize},
		{Name: "text", Type: field.TypeString, Size: textSize},
		{Name: "author_id", Type: field.TypeInt},
		{Name: "timestamp", Type: field.TypeString, Size: 255},
		{Name: "is_answerable_ic", Type: field.TypeBool},
		{Name: "is_answerable_zs", Type: field.TypeBool},
		{Name: "turns", Type: field.TypeString, Size: 255, Default: ""},
	}
	rejectedQuestionTable = &schema.Table{
		Name:       tableRejectedQuestion,
		Columns:    rejectedQuestionColumns,
		PrimaryKey: []*schema.Column{rejectedQuestionColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "rejected_question_paragraph",
				Columns:    []*schema.Column{rejectedQuestionColumns[1]},
				RefColumns: []*schema.Column{paragraphColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "rejected_question_author",
				Columns:    []*schema.Column{rejectedQuestionColumns[5]},
				RefColumns: []*schema.Column{authorColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "rejected_question_paragraph_id", Columns: []*schema.Column{rejectedQuestionColumns[1]}},
		},
	}

	answerColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "question_id", Type: field.TypeInt},
		{Name: "author_id", Type: field.TypeInt},
		{Name: "setting", Type: field.TypeEnum, Enums: []string{"zs", "ic", "human"}},
		{Name: "timestamp", Type: field.TypeString, Size: 255},
		{Name: "text", Type: field.TypeString, Size: textSize},
	}
	answerTable = &schema.Table{
		Name:       tableAnswer,
		Columns:    answerColumns,
		PrimaryKey: []*schema.Column{answerColumns[0]},
		Indexes: []*schema.Index{
			{Name: "answer_question_id", Columns: []*schema.Column{answerColumns[1]}},
		},
	}

	ratingColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "text", Type: field.TypeString, Size: textSize},
		{Name: "value", Type: field.TypeInt},
		{Name: "answer_id", Type: field.TypeInt},
		{Name: "author_id", Type: field.TypeInt},
		{Name: "timestamp", Type: field.TypeString, Size: 255},
	}
	ratingTable = &schema.Table{
		Name:       tableRating,
		Columns:    ratingColumns,
		PrimaryKey: []*schema.Column{ratingColumns[0]},
		Indexes: []*schema.Index{
			{Name: "rating_answer_id", Columns: []*schema.Column{ratingColumns[3]}},
		},
	}

	metadataColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "key", Type: field.TypeString, Size: 1023},
		{Name: "value", Type: field.TypeString, Size: textSize},
	}
	metadataTable = &schema.Table{
		Name:       tableMetadata,
		Columns:    metadataColumns,
		PrimaryKey: []*schema.Column{metadataColumns[0]},
		Indexes: []*schema.Index{
			{Name: "metadata_key", Unique: true, Columns: []*schema.Column{metadataColumns[1]}},
		},
	}

	llmRequestEventColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: textSize, Default: ""},
	}
	llmRequestEventTable = &schema.Table{
		Name:       tableLLMRequestEvent,
		Columns:    llmRequestEventColumns,
		PrimaryKey: []*schema.Column{llmRequestEventColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llm_request_event_purpose", Columns: []*schema.Column{llmRequestEventColumns[4]}},
			{Name: "llm_request_event_success", Columns: []*schema.Column{llmRequestEventColumns[8]}},
		},
	}

	tables = []*schema.Table{
		paragraphTable,
		authorTable,
		questionTable,
		rejectedQuestionTable,
		answerTable,
		ratingTable,
		metadataTable,
		llmRequestEventTable,
	}
)

func init() {
	questionTable.ForeignKeys[0].RefTable = paragraphTable
	questionTable.ForeignKeys[1].RefTable = authorTable
	rejectedQuestionTable.ForeignKeys[0].RefTable = paragraphTable
	rejectedQuestionTable.ForeignKeys[1].RefTable = authorTable
}

// migrate creates missing tables, columns and indexes.
func migrate(ctx context.Context, drv *entsql.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}
