// summary.go
package openapi2mcp

import "fmt"

// PrintToolSummary prints a short summary of a generated tool set: the tool
// count and how many tools carry each tag.
func PrintToolSummary(bindings []*ToolBinding) {
	tagCount := map[string]int{}
	unvalidated := 0
	for _, b := range bindings {
		for _, tag := range b.Op.Tags {
			tagCount[tag]++
		}
		for _, f := range b.Buckets.Body {
			if f.Schema.Unvalidated() {
				unvalidated++
			}
		}
	}
	fmt.Printf("Total tools: %d\n", len(bindings))
	if len(tagCount) > 0 {
		fmt.Println("Tags:")
		for tag, count := range tagCount {
			fmt.Printf("  %s: %d\n", tag, count)
		}
	}
	if unvalidated > 0 {
		fmt.Printf("Arguments accepting any value: %d\n", unvalidated)
	}
}
