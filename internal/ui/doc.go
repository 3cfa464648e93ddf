// Package ui implements an interactive terminal board for backup status using bubbletea's Elm architecture.
//
// The TUI moves between four views:
//  1. [BoardView] : Browse records with their stage cells, pending proposals marked with *
//  2. [DetailView] : Full stage labels, verifiers and editor state of one record
//  3. [EditView] : Edit name, event, date and description
//  4. [ConfirmDeleteView] : Confirm removal of a record
//
// The [Model] owns a [tasks.Board] and mutates it only inside Update. List, save, delete and submit requests run as
// bubbletea commands and their results come back through the Msg union, where they are applied to the board
// (Board.PrepareSubmit before the command, Board.FinishSubmit on the result).
//
// Keys 1-4 toggle the CAM, Master, Clean and Final stages of the selected record; s submits it and S submits every
// record with pending changes. Navigation uses vim-style bindings with contextual help from charmbracelet/bubbles/help.
package ui
