// Critic reviews the staged changes of a git working tree with Gemini.
//
// It sends the staged diff together with project context (README, recent
// commit subjects, the file tree and the current contents of changed files)
// and prints the model's review inside a banner.
//
// Usage:
//
//	critic                        # review staged changes in the current repo
//	critic -e --context-lines 20  # review with a wider diff context
//	critic --stream               # print the review as it is generated
//	critic --format json          # machine-readable result
//	critic config init            # write a default config file
//
// GEMINI_API_KEY (or GOOGLE_API_KEY) must be set.
package main
