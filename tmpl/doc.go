// Package tmpl implements the small template language reports are written
// in. Templates expand against a bound model.Value into markup.
//
// Tags are delimited by {{ and }}:
//
//	{{customer.name}}                 substitution, escaped for markup
//	{{note | raw}}                    substitution without escaping
//	{{total | number 2}}              pipes: upper lower trim title len
//	                                  default "x" number N date "layout" join "sep"
//	{{if paid}}…{{elsif due}}…{{else}}…{{end}}
//	{{unless items}}…{{end}}
//	{{if status == "open"}} / {{if not defined discount}}
//	{{for item in items}}…{{else}}…{{end}}
//	{{for i, item in items}}{{loop.number}}/{{loop.length}}{{end}}
//	{{include "footer"}}
//	{{! a comment }}
//
// A "-" just inside a delimiter ({{- x -}}) trims the adjacent whitespace.
//
// References to names the model does not bind are governed by Policy.
// PolicyFail, the default, stops expansion with an UndefinedError carrying
// the template position. Only "defined" conditions and the default pipe
// inspect unbound names without triggering the policy.
package tmpl
