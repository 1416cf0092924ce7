package cdpcontrol

import "strings"

// Marker is the attribute role lookups tag matching elements with so that
// later actions can address them by CSS selector.
const Marker = "data-formprobe"

func jsFill(sel, value string) string {
	return wrapJSEval(`var sel = ` + jsString(sel) + `;
var el = document.querySelector(sel);
if (!el) return __fpNotFound(sel);
el.scrollIntoView({block: "center"});
el.focus();
var proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
var desc = Object.getOwnPropertyDescriptor(proto, "value");
if (desc && desc.set) { desc.set.call(el, ` + jsString(value) + `); } else { el.value = ` + jsString(value) + `; }
el.dispatchEvent(new Event("input", {bubbles: true}));
el.dispatchEvent(new Event("change", {bubbles: true}));
return JSON.stringify({ok:true,data:{value:String(el.value)}});`)
}

func jsFieldState(sel string) string {
	return wrapJSEval(`var sel = ` + jsString(sel) + `;
var el = document.querySelector(sel);
if (!el) return __fpNotFound(sel);
return JSON.stringify({ok:true,data:{
  value: el.value == null ? "" : String(el.value),
  native_valid: el.validity ? !!el.validity.valid : true,
  validation_message: el.validationMessage || "",
  disabled: !!el.disabled,
  placeholder: el.getAttribute("placeholder") || "",
  visible: __fpVisible(el)
}});`)
}

func jsClick(sel string) string {
	return wrapJSEval(`var sel = ` + jsString(sel) + `;
var el = document.querySelector(sel);
if (!el) return __fpNotFound(sel);
el.scrollIntoView({block: "center"});
el.click();
return JSON.stringify({ok:true});`)
}

func jsFocus(sel string) string {
	return wrapJSEval(`var sel = ` + jsString(sel) + `;
var el = document.querySelector(sel);
if (!el) return __fpNotFound(sel);
el.focus();
return JSON.stringify({ok:true,data:document.activeElement === el});`)
}

func jsIsFocused(sel string) string {
	return wrapJSEval(`var el = document.querySelector(` + jsString(sel) + `);
return JSON.stringify({ok:true,data:!!el && document.activeElement === el});`)
}

func jsIsVisible(sel string) string {
	return wrapJSEval(`var el = document.querySelector(` + jsString(sel) + `);
return JSON.stringify({ok:true,data:__fpVisible(el)});`)
}

func jsCount(sel string) string {
	return wrapJSEval(`return JSON.stringify({ok:true,data:document.querySelectorAll(` + jsString(sel) + `).length});`)
}

// jsVisibleText returns the text of the first visible element matching sel.
func jsVisibleText(sel string) string {
	return wrapJSEval(`var nodes = document.querySelectorAll(` + jsString(sel) + `);
for (var i = 0; i < nodes.length; i++) {
  if (__fpVisible(nodes[i])) {
    return JSON.stringify({ok:true,data:{visible:true,text:String(nodes[i].innerText || nodes[i].textContent || "").trim()}});
  }
}
return JSON.stringify({ok:true,data:{visible:false,text:""}});`)
}

// jsFindText looks for the innermost visible element under scope whose text
// matches pattern (a case-insensitive regular expression).
func jsFindText(scope, pattern string) string {
	return wrapJSEval(`var scopeSel = ` + jsString(scope) + `;
var root = scopeSel ? document.querySelector(scopeSel) : document.body;
if (!root) return JSON.stringify({ok:true,data:{visible:false,text:""}});
var re = new RegExp(` + jsString(pattern) + `, "i");
var all = root.querySelectorAll("*");
for (var i = 0; i < all.length; i++) {
  var el = all[i];
  var txt = String(el.innerText || "");
  if (!re.test(txt) || !__fpVisible(el)) continue;
  var inner = false;
  for (var c = 0; c < el.children.length; c++) {
    if (re.test(String(el.children[c].innerText || ""))) { inner = true; break; }
  }
  if (!inner) return JSON.stringify({ok:true,data:{visible:true,text:txt.trim()}});
}
return JSON.stringify({ok:true,data:{visible:false,text:""}});`)
}

func jsBoundingBox(sel string) string {
	return wrapJSEval(`var el = document.querySelector(` + jsString(sel) + `);
if (!el || !__fpVisible(el)) return JSON.stringify({ok:true,data:null});
var r = el.getBoundingClientRect();
return JSON.stringify({ok:true,data:{x:r.x + window.scrollX,y:r.y + window.scrollY,width:r.width,height:r.height}});`)
}

func jsComputedStyle(sel string, props []string) string {
	return wrapJSEval(`var sel = ` + jsString(sel) + `;
var el = document.querySelector(sel);
if (!el) return __fpNotFound(sel);
var s = window.getComputedStyle(el);
var out = {};
` + jsJSON(props) + `.forEach(function(p) { out[p] = s.getPropertyValue(p); });
return JSON.stringify({ok:true,data:out});`)
}

var roleQueries = map[string]string{
	"button":  `button,[role="button"],input[type="submit"],input[type="button"]`,
	"textbox": `input:not([type]),input[type="text"],input[type="email"],input[type="tel"],input[type="search"],input[type="url"],textarea,[role="textbox"]`,
	"link":    `a[href],[role="link"]`,
	"form":    `form`,
}

// jsMarkByRole tags every element with the given role whose accessible name
// contains name (or equals it when exact) and returns their selectors.
func jsMarkByRole(q RoleQuery, prefix string) string {
	css, ok := roleQueries[strings.ToLower(q.Role)]
	if !ok {
		css = "*"
	}
	return wrapJSEval(`var scopeSel = ` + jsString(q.Scope) + `;
var scope = scopeSel ? document.querySelector(scopeSel) : document;
if (!scope) return JSON.stringify({ok:true,data:[]});
var role = ` + jsString(strings.ToLower(q.Role)) + `;
function norm(s) { return String(s || "").replace(/\s+/g, " ").trim().toLowerCase(); }
function accName(el) {
  var l = el.getAttribute("aria-label");
  if (l) return l;
  var ids = el.getAttribute("aria-labelledby");
  if (ids) {
    var t = ids.split(/\s+/).map(function(id) { var n = document.getElementById(id); return n ? n.textContent : ""; }).join(" ").trim();
    if (t) return t;
  }
  if (el.labels && el.labels.length) {
    var lt = Array.prototype.map.call(el.labels, function(x) { return x.textContent; }).join(" ").trim();
    if (lt) return lt;
  }
  if (el.tagName === "INPUT" && (el.type === "submit" || el.type === "button")) return el.value || "";
  if (role === "textbox") return el.getAttribute("placeholder") || el.getAttribute("title") || "";
  return String(el.innerText || el.textContent || "").trim() || el.getAttribute("title") || "";
}
var want = norm(` + jsString(q.Name) + `);
var exact = ` + jsJSON(q.Exact) + `;
var visibleOnly = ` + jsJSON(q.VisibleOnly) + `;
var prefix = ` + jsString(prefix) + `;
var out = [];
var nodes = scope.querySelectorAll(` + jsString(css) + `);
for (var i = 0; i < nodes.length; i++) {
  var el = nodes[i];
  var n = norm(accName(el));
  if (want && (exact ? n !== want : n.indexOf(want) === -1)) continue;
  if (visibleOnly && !__fpVisible(el)) continue;
  var id = prefix + "-" + out.length;
  el.setAttribute("` + Marker + `", id);
  out.push('[` + Marker + `="' + id + '"]');
}
return JSON.stringify({ok:true,data:out});`)
}
