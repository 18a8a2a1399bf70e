// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"

	"github.com/jeranaias/querychat/internal/export"
	"github.com/jeranaias/querychat/internal/model"
)

// ExampleMarkdownTable renders a small result as a GitHub table.
func ExampleMarkdownTable() {
	fmt.Print(export.MarkdownTable(
		[]string{"Region", "Revenue"},
		[][]string{{"North", "1,200"}, {"South", "950"}},
	))
	// Output:
	// | Region | Revenue |
	// | --- | --- |
	// | North | 1,200 |
	// | South | 950 |
}

// ExampleWriteTable exports the latest table of a conversation to CSV.
func ExampleWriteTable() {
	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("Revenue by region"))
	conv.Append(model.NewTableMessage("Found 2 results.",
		[]string{"Region", "Revenue"},
		[][]string{{"North", "1,200"}, {"South", "950"}},
		[]byte(`[{"region":"North","revenue":1200},{"region":"South","revenue":950}]`),
	))

	table, err := export.TableFromConversation(conv)
	if err != nil {
		fmt.Printf("Export failed: %v\n", err)
		return
	}

	opts := export.DefaultOptions()
	if err := export.WriteTable(table, "./exports/revenue.xlsx", opts); err != nil {
		fmt.Printf("Export failed: %v\n", err)
		return
	}
	fmt.Println(table.Headers)
}
