// Package mcp exposes an editing session over the Model Context Protocol:
// every structural edit is a tool routed through the undo history, and the
// session state is readable as resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/application"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/logger"
	"github.com/modelcontextprotocol/go-sdk/examples/server/dsmviewer/internal/dsmviewer/model"
)

const uriPrefix = "mcp://dsmviewer/"

// DSMServer binds MCP handlers to an application session.
type DSMServer struct {
	App *application.Application
	Log *logger.Logger
}

// NewServer registers the tools and resources of the viewer.
func NewServer(app *application.Application, log *logger.Logger) *mcp.Server {
	if log == nil {
		log = logger.Nop()
	}
	ds := &DSMServer{App: app, Log: log}

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "dsmviewer-mcp",
		Version: "0.1.0",
	}, &mcp.ServerOptions{})

	// Session
	mcp.AddTool(s, &mcp.Tool{Name: "analyze", Description: "Re-analyze the project sources, replacing the model and its history"}, ds.analyze)
	mcp.AddTool(s, &mcp.Tool{Name: "save", Description: "Save the model and its history"}, ds.save)
	mcp.AddTool(s, &mcp.Tool{Name: "export", Description: "Export the model as a .dsm archive or the matrix as an Excalidraw drawing"}, ds.export)
	mcp.AddTool(s, &mcp.Tool{Name: "undo", Description: "Undo the latest edit"}, ds.undo)
	mcp.AddTool(s, &mcp.Tool{Name: "redo", Description: "Redo the latest undone edit"}, ds.redo)
	mcp.AddTool(s, &mcp.Tool{Name: "snapshot", Description: "Record a named point in the edit history"}, ds.snapshot)
	mcp.AddTool(s, &mcp.Tool{Name: "undo_to_snapshot", Description: "Undo every edit made after a named snapshot"}, ds.undoToSnapshot)

	// Elements
	mcp.AddTool(s, &mcp.Tool{Name: "search_elements", Description: "Find elements whose full name contains a text"}, ds.searchElements)
	mcp.AddTool(s, &mcp.Tool{Name: "element_details", Description: "Describe an element with its ingoing and outgoing relations"}, ds.elementDetails)
	mcp.AddTool(s, &mcp.Tool{Name: "expand_element", Description: "Expand or collapse an element in the matrix"}, ds.expandElement)
	mcp.AddTool(s, &mcp.Tool{Name: "hide_element", Description: "Hide an element from the tree and matrix, or show it again"}, ds.hideElement)
	mcp.AddTool(s, &mcp.Tool{Name: "create_element", Description: "Create an element below a parent (0 for top level)"}, ds.createElement)
	mcp.AddTool(s, &mcp.Tool{Name: "delete_element", Description: "Delete an element and its subtree"}, ds.deleteElement)
	mcp.AddTool(s, &mcp.Tool{Name: "rename_element", Description: "Rename an element"}, ds.renameElement)
	mcp.AddTool(s, &mcp.Tool{Name: "change_element_type", Description: "Change the type of an element"}, ds.changeElementType)
	mcp.AddTool(s, &mcp.Tool{Name: "move_element", Description: "Move an element below another parent (0 for top level)"}, ds.moveElement)
	mcp.AddTool(s, &mcp.Tool{Name: "move_sibling", Description: "Swap an element with its previous (up) or next (down) sibling"}, ds.moveSibling)
	mcp.AddTool(s, &mcp.Tool{Name: "partition", Description: "Reorder the children of an element"}, ds.partition)

	// Relations
	mcp.AddTool(s, &mcp.Tool{Name: "create_relation", Description: "Add a weighted dependency from a consumer to a provider"}, ds.createRelation)
	mcp.AddTool(s, &mcp.Tool{Name: "delete_relation", Description: "Delete a relation"}, ds.deleteRelation)
	mcp.AddTool(s, &mcp.Tool{Name: "change_relation", Description: "Change the type and/or weight of a relation"}, ds.changeRelation)

	s.AddResource(&mcp.Resource{Name: "status", URI: uriPrefix + "status", MIMEType: "application/json"}, ds.handleStatus)
	s.AddResource(&mcp.Resource{Name: "tree", URI: uriPrefix + "tree", MIMEType: "application/json"}, ds.handleTree)
	s.AddResource(&mcp.Resource{Name: "matrix", URI: uriPrefix + "matrix", MIMEType: "text/plain"}, ds.handleMatrix)
	s.AddResource(&mcp.Resource{Name: "history", URI: uriPrefix + "history", MIMEType: "application/json"}, ds.handleHistory)

	return s
}

// Tool Inputs

// EmptyInput defines an empty input structure for tools that require no parameters.
type EmptyInput struct{}

type ElementInput struct {
	ID int `json:"id" jsonschema:"element id"`
}

type ExpandInput struct {
	ID       int  `json:"id" jsonschema:"element id"`
	Expanded bool `json:"expanded" jsonschema:"true to expand, false to collapse"`
}

type HideInput struct {
	ID     int  `json:"id" jsonschema:"element id"`
	Hidden bool `json:"hidden" jsonschema:"true to hide, false to show"`
}

type CreateElementInput struct {
	Name     string `json:"name" jsonschema:"element name without dots"`
	Type     string `json:"type,omitempty" jsonschema:"element type such as package or struct"`
	ParentID int    `json:"parent_id,omitempty" jsonschema:"parent element id, 0 for top level"`
}

type RenameInput struct {
	ID   int    `json:"id" jsonschema:"element id"`
	Name string `json:"name" jsonschema:"new name"`
}

type ChangeTypeInput struct {
	ID   int    `json:"id" jsonschema:"element id"`
	Type string `json:"type" jsonschema:"new type"`
}

type MoveInput struct {
	ID       int `json:"id" jsonschema:"element id"`
	ParentID int `json:"parent_id" jsonschema:"new parent id, 0 for top level"`
}

type MoveSiblingInput struct {
	ID        int    `json:"id" jsonschema:"element id"`
	Direction string `json:"direction" jsonschema:"up or down"`
}

type PartitionInput struct {
	ID       int   `json:"id" jsonschema:"parent element id"`
	Sequence []int `json:"sequence" jsonschema:"new position of every visible child, by current index"`
}

type SearchInput struct {
	Text          string `json:"text" jsonschema:"substring of the full name"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	Type          string `json:"type,omitempty" jsonschema:"only elements of this type"`
}

type CreateRelationInput struct {
	ConsumerID int    `json:"consumer_id" jsonschema:"id of the depending element"`
	ProviderID int    `json:"provider_id" jsonschema:"id of the element depended upon"`
	Type       string `json:"type" jsonschema:"relation type such as call or use"`
	Weight     int    `json:"weight" jsonschema:"non-negative weight"`
	Context    string `json:"context,omitempty"`
}

type RelationInput struct {
	ID int `json:"id" jsonschema:"relation id"`
}

type ChangeRelationInput struct {
	ID     int    `json:"id" jsonschema:"relation id"`
	Type   string `json:"type,omitempty" jsonschema:"new type"`
	Weight *int   `json:"weight,omitempty" jsonschema:"new weight"`
}

type SnapshotInput struct {
	Name string `json:"name" jsonschema:"snapshot name"`
}

type ExportInput struct {
	Format string `json:"format" jsonschema:"dsm or excalidraw"`
	Path   string `json:"path" jsonschema:"output file"`
}

// Tool Results

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	bytes, _ := json.MarshalIndent(v, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(bytes)}},
	}
}

// errorResult reports a failed edit to the client. Edit failures are tool
// errors, not protocol errors.
func (ds *DSMServer) errorResult(tool string, err error) *mcp.CallToolResult {
	ds.Log.Warn("Tool failed", "tool", tool, "error", err)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func (ds *DSMServer) done(tool string, err error, format string, args ...any) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return ds.errorResult(tool, err), nil, nil
	}
	return textResult(format, args...), nil, nil
}

// Tool Handlers

func (ds *DSMServer) analyze(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	report, err := ds.App.Analyze(ctx)
	if err != nil {
		return ds.errorResult("analyze", err), nil, nil
	}
	failures := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, f.Error())
	}
	return jsonResult(map[string]any{
		"files":     report.Files,
		"elements":  report.Elements,
		"relations": report.Relations,
		"excluded":  report.Excluded,
		"external":  report.External,
		"failures":  failures,
	}), nil, nil
}

func (ds *DSMServer) save(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	return ds.done("save", ds.App.Save(), "Saved %d history entries", len(ds.App.History()))
}

func (ds *DSMServer) export(ctx context.Context, req *mcp.CallToolRequest, input ExportInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return ds.errorResult("export", fmt.Errorf("path required")), nil, nil
	}
	var err error
	switch input.Format {
	case "dsm", "":
		err = ds.App.ExportArchive(input.Path)
	case "excalidraw":
		err = ds.App.ExportExcalidraw(input.Path)
	default:
		err = fmt.Errorf("unknown export format %q", input.Format)
	}
	return ds.done("export", err, "Exported to %s", input.Path)
}

func (ds *DSMServer) undo(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	title, err := ds.App.Undo()
	return ds.done("undo", err, "Undone: %s", title)
}

func (ds *DSMServer) redo(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	title, err := ds.App.Redo()
	return ds.done("redo", err, "Redone: %s", title)
}

func (ds *DSMServer) snapshot(ctx context.Context, req *mcp.CallToolRequest, input SnapshotInput) (*mcp.CallToolResult, any, error) {
	if input.Name == "" {
		return ds.errorResult("snapshot", fmt.Errorf("name required")), nil, nil
	}
	return ds.done("snapshot", ds.App.Snapshot(input.Name), "Snapshot %s recorded", input.Name)
}

func (ds *DSMServer) undoToSnapshot(ctx context.Context, req *mcp.CallToolRequest, input SnapshotInput) (*mcp.CallToolResult, any, error) {
	return ds.done("undo_to_snapshot", ds.App.UndoToSnapshot(input.Name), "Back at snapshot %s", input.Name)
}

func (ds *DSMServer) searchElements(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	found := ds.App.Search(input.Text, model.SearchOptions{CaseSensitive: input.CaseSensitive, Type: input.Type, Mark: true})
	return jsonResult(found), nil, nil
}

func (ds *DSMServer) elementDetails(ctx context.Context, req *mcp.CallToolRequest, input ElementInput) (*mcp.CallToolResult, any, error) {
	details, err := ds.App.ElementDetails(input.ID)
	if err != nil {
		return ds.errorResult("element_details", err), nil, nil
	}
	return jsonResult(details), nil, nil
}

func (ds *DSMServer) expandElement(ctx context.Context, req *mcp.CallToolRequest, input ExpandInput) (*mcp.CallToolResult, any, error) {
	return ds.done("expand_element", ds.App.SetExpanded(input.ID, input.Expanded), "Element %d expanded=%t", input.ID, input.Expanded)
}

func (ds *DSMServer) hideElement(ctx context.Context, req *mcp.CallToolRequest, input HideInput) (*mcp.CallToolResult, any, error) {
	return ds.done("hide_element", ds.App.SetIncludedInTree(input.ID, !input.Hidden), "Element %d hidden=%t", input.ID, input.Hidden)
}

func (ds *DSMServer) createElement(ctx context.Context, req *mcp.CallToolRequest, input CreateElementInput) (*mcp.CallToolResult, any, error) {
	e, err := ds.App.CreateElement(input.Name, input.Type, input.ParentID)
	if err != nil {
		return ds.errorResult("create_element", err), nil, nil
	}
	return textResult("Created element %s with id %d", e.FullName, e.ID), nil, nil
}

func (ds *DSMServer) deleteElement(ctx context.Context, req *mcp.CallToolRequest, input ElementInput) (*mcp.CallToolResult, any, error) {
	return ds.done("delete_element", ds.App.DeleteElement(input.ID), "Deleted element %d", input.ID)
}

func (ds *DSMServer) renameElement(ctx context.Context, req *mcp.CallToolRequest, input RenameInput) (*mcp.CallToolResult, any, error) {
	return ds.done("rename_element", ds.App.RenameElement(input.ID, input.Name), "Renamed element %d to %s", input.ID, input.Name)
}

func (ds *DSMServer) changeElementType(ctx context.Context, req *mcp.CallToolRequest, input ChangeTypeInput) (*mcp.CallToolResult, any, error) {
	return ds.done("change_element_type", ds.App.ChangeElementType(input.ID, input.Type), "Element %d is now a %s", input.ID, input.Type)
}

func (ds *DSMServer) moveElement(ctx context.Context, req *mcp.CallToolRequest, input MoveInput) (*mcp.CallToolResult, any, error) {
	return ds.done("move_element", ds.App.MoveElement(input.ID, input.ParentID), "Moved element %d below %d", input.ID, input.ParentID)
}

func (ds *DSMServer) moveSibling(ctx context.Context, req *mcp.CallToolRequest, input MoveSiblingInput) (*mcp.CallToolResult, any, error) {
	var err error
	switch strings.ToLower(input.Direction) {
	case "up":
		err = ds.App.MoveUp(input.ID)
	case "down":
		err = ds.App.MoveDown(input.ID)
	default:
		err = fmt.Errorf("direction must be up or down, got %q", input.Direction)
	}
	return ds.done("move_sibling", err, "Moved element %d %s", input.ID, input.Direction)
}

func (ds *DSMServer) partition(ctx context.Context, req *mcp.CallToolRequest, input PartitionInput) (*mcp.CallToolResult, any, error) {
	return ds.done("partition", ds.App.Partition(input.ID, input.Sequence), "Reordered children of %d", input.ID)
}

func (ds *DSMServer) createRelation(ctx context.Context, req *mcp.CallToolRequest, input CreateRelationInput) (*mcp.CallToolResult, any, error) {
	r, err := ds.App.CreateRelation(input.ConsumerID, input.ProviderID, input.Type, input.Weight, input.Context)
	if err != nil {
		return ds.errorResult("create_relation", err), nil, nil
	}
	return textResult("Relation %d now weighs %d", r.ID, r.Weight), nil, nil
}

func (ds *DSMServer) deleteRelation(ctx context.Context, req *mcp.CallToolRequest, input RelationInput) (*mcp.CallToolResult, any, error) {
	return ds.done("delete_relation", ds.App.DeleteRelation(input.ID), "Deleted relation %d", input.ID)
}

func (ds *DSMServer) changeRelation(ctx context.Context, req *mcp.CallToolRequest, input ChangeRelationInput) (*mcp.CallToolResult, any, error) {
	if input.Type == "" && input.Weight == nil {
		return ds.errorResult("change_relation", fmt.Errorf("type or weight required")), nil, nil
	}
	if input.Type != "" {
		if err := ds.App.ChangeRelationType(input.ID, input.Type); err != nil {
			return ds.errorResult("change_relation", err), nil, nil
		}
	}
	if input.Weight != nil {
		if err := ds.App.ChangeRelationWeight(input.ID, *input.Weight); err != nil {
			return ds.errorResult("change_relation", err), nil, nil
		}
	}
	return textResult("Changed relation %d", input.ID), nil, nil
}

// Resource Handlers

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(bytes)},
		},
	}, nil
}

func (ds *DSMServer) handleStatus(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, ds.App.Status())
}

func (ds *DSMServer) handleTree(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, ds.App.Tree())
}

func (ds *DSMServer) handleHistory(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, ds.App.History())
}

func (ds *DSMServer) handleMatrix(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	text := ds.App.MatrixText()
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: "text/plain", Text: text},
		},
	}, nil
}
