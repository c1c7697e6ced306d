// internal/browser/jsbind/polyfill.go
package jsbind

import (
	"github.com/dop251/goja"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
)

// Polyfill is a script run against a freshly bootstrapped scope to supply an API the
// host classes do not implement natively.
type Polyfill struct {
	Name   string
	Source string
	// Gate restricts the polyfill to some browsers. A nil gate allows all.
	Gate features.Gate
}

func (p Polyfill) apply(rt *goja.Runtime) error {
	prg, err := goja.Compile(p.Name, p.Source, false)
	if err != nil {
		return &PolyfillError{Name: p.Name, Err: err}
	}
	if _, err := rt.RunProgram(prg); err != nil {
		return &PolyfillError{Name: p.Name, Err: err}
	}
	return nil
}

// FetchPolyfill installs window.fetch plus minimal Headers and Response classes. Pages
// loaded in this engine have no network access from scripts, so fetch always rejects
// with the TypeError browsers report for network failures.
var FetchPolyfill = Polyfill{
	Name: "fetch.js",
	Source: `(function (global) {
  'use strict';
  if (typeof global.fetch === 'function') {
    return;
  }
  function Headers(init) {
    var map = {};
    this.append = function (name, value) {
      name = String(name).toLowerCase();
      map[name] = name in map ? map[name] + ', ' + value : String(value);
    };
    this.get = function (name) {
      name = String(name).toLowerCase();
      return name in map ? map[name] : null;
    };
    this.has = function (name) {
      return String(name).toLowerCase() in map;
    };
    this.set = function (name, value) {
      map[String(name).toLowerCase()] = String(value);
    };
    this['delete'] = function (name) {
      delete map[String(name).toLowerCase()];
    };
    if (init) {
      for (var k in init) {
        if (Object.prototype.hasOwnProperty.call(init, k)) {
          this.append(k, init[k]);
        }
      }
    }
  }
  function Response(body, init) {
    init = init || {};
    this.status = init.status === undefined ? 200 : init.status;
    this.ok = this.status >= 200 && this.status < 300;
    this.statusText = init.statusText || '';
    this.headers = new Headers(init.headers);
    var text = body === undefined || body === null ? '' : String(body);
    this.text = function () { return Promise.resolve(text); };
    this.json = function () {
      return this.text().then(JSON.parse);
    };
  }
  Object.defineProperty(global, 'Headers', { value: Headers, writable: true, configurable: true });
  Object.defineProperty(global, 'Response', { value: Response, writable: true, configurable: true });
  Object.defineProperty(global, 'fetch', {
    value: function fetch(input) {
      return Promise.reject(new TypeError('Failed to fetch'));
    },
    writable: true,
    configurable: true
  });
})(this);`,
}
