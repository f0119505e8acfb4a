package vision

import "fmt"

const systemPrompt = `You are an expert at reading Arabic family tree diagrams.
Extract every person shown in the image together with their direct parent.
Return ONLY a valid JSON array of objects, no markdown and no explanation.
Each object must have exactly these keys:
  "full_name"   : the person's full name as written in the diagram.
  "parent_name" : the full name of their direct father or parent in the tree, or null for the top-most ancestor.
  "branch_name" : the branch name provided by the user.
Do not miss any person. Process the entire diagram.`

func userPrompt(branch string) string {
	return fmt.Sprintf("The branch name for all people in this image is: %q. Extract all family members with their hierarchy.", branch)
}
