// Fanout streams several Gemini prompts concurrently and prints each
// fragment as it arrives, tagged with the number of its prompt.
//
// Usage:
//
//	fanout                               # run the built-in demo prompts
//	fanout "first prompt" -p "second"    # positional and repeated --prompt
//	fanout --prompts-file prompts.txt    # one prompt per line
//	fanout --fail-fast --timeout 30      # stop everything on the first failure
package main
